// Command embedgate は埋め込みアプリケーション向けの認証ゲートAPIサーバー。
//
// 使い方:
//
//	embedgate [serve|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/embedgate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "embedgate: %v\n", err)
		os.Exit(1)
	}
}
