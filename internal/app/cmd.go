package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はバイナリのサブコマンド。
type Command string

const (
	// CommandServe はHTTP APIを起動する。引数なしの既定値。
	CommandServe Command = "serve"
	// CommandMigrate は未適用のマイグレーションを適用する。
	CommandMigrate Command = "migrate"
	// CommandMigrateStatus はスキーマバージョンを表示し、未適用があれば失敗する。
	CommandMigrateStatus Command = "migrate-status"
	// CommandHealthcheck は起動中のサーバーの/healthを叩く。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = []Command{CommandServe, CommandMigrate, CommandMigrateStatus, CommandHealthcheck}

// ErrUnknownCommand は未知のサブコマンドを示す。
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand は先頭の引数をサブコマンドとして解釈する。2番目以降の引数は無視する。
// 誤ったサブコマンドでサーバーが起動しないよう、未知の値はエラーにする。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}

	name := strings.ToLower(args[0])
	for _, c := range commands {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q (available: %s)", ErrUnknownCommand, args[0], commandList())
}

func commandList() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
