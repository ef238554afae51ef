package app

import (
	"runtime/debug"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は認証画面サーバーとして起動することを示す。
	CommandServe Command = "serve"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandVersion はビルド情報を表示することを示す。
	CommandVersion Command = "version"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandHealthcheck:
		return CommandHealthcheck
	case CommandVersion, "--version", "-v":
		return CommandVersion
	default:
		return CommandServe
	}
}

// Version はバイナリに埋め込まれたモジュールバージョンとVCSリビジョンを返す。
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	v := info.Main.Version
	if v == "" {
		v = "(devel)"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			v += " " + s.Value[:7]
		}
	}
	return v
}
