package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, blog, ai, import, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeMissingCredential  = "MISSING_CREDENTIAL"
	ErrCodeInvalidCredential  = "INVALID_CREDENTIAL"
	ErrCodeInvalidLogin       = "INVALID_LOGIN"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeAIInvalidInput     = "AI_INVALID_INPUT"
	ErrCodeAIUnavailable      = "AI_SERVICE_UNAVAILABLE"
	ErrCodeAIMalformed        = "AI_MALFORMED_RESPONSE"
	ErrCodeImportInvalidURL   = "IMPORT_INVALID_URL"
	ErrCodeImportBlocked      = "IMPORT_BLOCKED"
	ErrCodeImportFeedNotFound = "IMPORT_FEED_NOT_FOUND"
	ErrCodeImportFetchFailed  = "IMPORT_FETCH_FAILED"
	ErrCodeImportParseFailed  = "IMPORT_PARSE_FAILED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// HasCode はerrがAPIErrorであり、指定コードを持つかどうかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "Check the highlighted fields and try again.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Request body could not be parsed.",
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "User already exists",
		Category: "validation",
		Action:   "Log in instead, or register with a different email.",
	}
}

// NewMissingCredentialError はBearerトークン未指定エラーを生成する。
func NewMissingCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCredential,
		Message:  "Not authorized, no token",
		Category: "auth",
		Action:   "Log in to continue.",
	}
}

// NewInvalidCredentialError はトークン検証失敗エラーを生成する。
// 署名不正・期限切れ・ユーザー不在のいずれも同じエラーとする。
func NewInvalidCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredential,
		Message:  "Not authorized, token failed",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewInvalidLoginError はメールアドレスまたはパスワード不一致エラーを生成する。
func NewInvalidLoginError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLogin,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewForbiddenError は著者以外による変更操作エラーを生成する。
// actionには "update" / "delete" / "update notes for" のような動詞句を渡す。
func NewForbiddenError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("Not authorized to %s this blog", action),
		Category: "auth",
		Action:   "Only the author can modify this blog.",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  "Blog not found",
		Category: "blog",
		Action:   "Check the blog ID.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewMethodNotAllowedError は未対応HTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed",
		Category: "system",
		Action:   "Check the HTTP method for this endpoint.",
	}
}

// NewAIInvalidInputError は要約対象コンテンツが空の場合のエラーを生成する。
func NewAIInvalidInputError() *APIError {
	return &APIError{
		Code:     ErrCodeAIInvalidInput,
		Message:  "Content is required for summarization",
		Category: "ai",
		Action:   "Write some content before generating a summary.",
	}
}

// NewAIUnavailableError はAIプロバイダーに到達できない・未設定の場合のエラーを生成する。
// 再試行しても解決しない可能性が高い。
func NewAIUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAIUnavailable,
		Message:  fmt.Sprintf("Failed to generate summary: %s", reason),
		Category: "ai",
		Action:   "Check the AI provider configuration and try again later.",
	}
}

// NewAIMalformedResponseError はAIプロバイダーの出力がJSONとして解析できない場合のエラーを生成する。
// 再試行で解決する可能性がある。
func NewAIMalformedResponseError() *APIError {
	return &APIError{
		Code:     ErrCodeAIMalformed,
		Message:  "Failed to parse AI response. Please try again.",
		Category: "ai",
		Action:   "Retry the summarization.",
	}
}

// NewImportInvalidURLError は無効なインポートURLエラーを生成する。
func NewImportInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportInvalidURL,
		Message:  fmt.Sprintf("Invalid URL: %s", reason),
		Category: "validation",
		Action:   "Enter an absolute http:// or https:// URL.",
	}
}

// NewImportBlockedError はSSRFガードによるブロックエラーを生成する。
func NewImportBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeImportBlocked,
		Message:  "Access to the given URL is blocked by the security policy.",
		Category: "import",
		Action:   "Use a publicly reachable site. Private and local addresses are not allowed.",
	}
}

// NewImportFeedNotFoundError はRSS/Atomフィードを検出できなかった場合のエラーを生成する。
func NewImportFeedNotFoundError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFeedNotFound,
		Message:  fmt.Sprintf("No RSS/Atom feed was found at %s", url),
		Category: "import",
		Action:   "Enter the feed URL directly, or a page that advertises its feed.",
	}
}

// NewImportFetchFailedError はインポート元の取得失敗エラーを生成する。
func NewImportFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFetchFailed,
		Message:  fmt.Sprintf("Failed to fetch the URL: %s", reason),
		Category: "import",
		Action:   "Check the URL and try again later.",
	}
}

// NewImportParseFailedError はフィードのパース失敗エラーを生成する。
func NewImportParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeImportParseFailed,
		Message:  "Failed to parse the feed.",
		Category: "import",
		Action:   "Make sure the URL points to a valid RSS/Atom feed.",
	}
}

// NewInternalError は詳細を伏せたサーバー内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Server error",
		Category: "system",
		Action:   "Please try again later.",
	}
}
