package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。
	// シェルを持たないdistrolessイメージのHEALTHCHECKで使う。
	CommandHealthcheck Command = "healthcheck"
)

// commands は受け付けるサブコマンドの一覧。Usageの表示順も兼ねる。
var commands = []Command{CommandServe, CommandMigrate, CommandHealthcheck}

// UnknownCommandError はサポート外のサブコマンドが指定されたことを示す。
type UnknownCommandError struct {
	Name string
}

// Error はerrorインターフェースを実装する。
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q (usage: %s)", e.Name, Usage())
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。サポート外の名前はUnknownCommandErrorになる。
// サブコマンド以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	name := strings.ToLower(strings.TrimSpace(args[0]))
	for _, c := range commands {
		if string(c) == name {
			return c, nil
		}
	}
	return "", &UnknownCommandError{Name: args[0]}
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = string(c)
	}
	return "embedgate [" + strings.Join(names, "|") + "]"
}
