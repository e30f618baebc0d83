// Package gate はリクエストの認証情報を検証し、ハンドラーが参照する判定結果を生成する。
package gate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/embedgate/internal/credential"
	"github.com/hitoshi/embedgate/internal/model"
)

// 判定結果のメトリクスラベル
const (
	OutcomeAuthorized = "authorized"

	SignalNative    = "native"
	SignalNonNative = "non_native"
	SignalError     = "error"
	SignalSkipped   = "skipped"
)

// PlatformSignal はリクエストがプラットフォームから送信されたものかを判定する。
// 否定的な結果はfalse、判定処理自体の失敗はerrorで返す。
type PlatformSignal interface {
	IsNativeRequest(ctx context.Context, r *http.Request, cred model.Credential) (bool, error)
}

// IdentityVerifier はPlatformSignalの肯定結果がポータルによる
// トークン確認を意味するかを返す。platform.RemoteSignalが実装する。
type IdentityVerifier interface {
	VerifiesIdentity() bool
}

// VerdictRecorder は判定結果を記録するインターフェース。
// metrics.Collectorが実装する。
type VerdictRecorder interface {
	RecordAuthVerdict(outcome string)
	RecordNativeSignal(result string)
}

// MessageSanitizer はレスポンスに含める文字列を無害化する。
// security.DisplaySanitizerが実装する。
type MessageSanitizer interface {
	Sanitize(value string) string
}

// Config はGateの設定。
type Config struct {
	Extractor      *credential.Extractor
	MinTokenLength int
	Signal         PlatformSignal // nilの場合は判定を行わない
	Recorder       VerdictRecorder
	Sanitizer      MessageSanitizer
}

// Gate は認証情報の抽出、形式検証、プラットフォーム由来判定を順に行う。
// リクエスト間で状態を持たない。
type Gate struct {
	extractor      *credential.Extractor
	minTokenLength int
	signal         PlatformSignal
	recorder       VerdictRecorder
	sanitizer      MessageSanitizer
}

// New はGateを生成する。未設定の項目はデフォルト値で補う。
func New(cfg Config) *Gate {
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = credential.NewExtractor(credential.Config{})
	}
	minLen := cfg.MinTokenLength
	if minLen <= 0 {
		minLen = model.DefaultMinTokenLength
	}
	return &Gate{
		extractor:      extractor,
		minTokenLength: minLen,
		signal:         cfg.Signal,
		recorder:       cfg.Recorder,
		sanitizer:      cfg.Sanitizer,
	}
}

// MinTokenLength は受け入れるトークンの最小文字数を返す。
func (g *Gate) MinTokenLength() int {
	return g.minTokenLength
}

// Authenticate はリクエストを検証し、判定結果を返す。
func (g *Gate) Authenticate(r *http.Request) model.AuthVerdict {
	verdict := g.authenticate(r)
	if g.recorder != nil {
		outcome := OutcomeAuthorized
		if !verdict.Success {
			outcome = string(verdict.ErrorKind)
		}
		g.recorder.RecordAuthVerdict(outcome)
	}
	return verdict
}

func (g *Gate) authenticate(r *http.Request) model.AuthVerdict {
	// 1. 認証情報の抽出
	cred, incomplete := g.extractor.Extract(r)
	if incomplete != nil {
		apiErr := model.NewUnauthorizedError(incomplete.Fields())
		slog.Info("credential incomplete",
			slog.String("path", r.URL.Path),
			slog.Any("missing", incomplete.Fields()),
		)
		return model.Rejected(model.ErrorKindUnauthorized, apiErr.Message)
	}

	// 2. トークン形式の検証
	if !cred.IsStructurallyValid(g.minTokenLength) {
		slog.Info("token too short",
			slog.String("domain", cred.Domain),
			slog.Int("token_length", cred.TokenLength()),
		)
		return model.Rejected(model.ErrorKindInvalidFormat, model.NewInvalidFormatError(g.minTokenLength).Message)
	}

	// 3. プラットフォーム由来判定（監査目的のみ）
	native, err := g.checkNativeSignal(r, cred)
	if err != nil {
		slog.Error("platform signal check failed",
			slog.String("domain", cred.Domain),
			slog.String("error", err.Error()),
		)
		return model.Rejected(model.ErrorKindAuthorizationCheckFailed,
			model.NewAuthorizationCheckFailedError(g.sanitize(err.Error())).Message)
	}

	// 4. 認証成功
	verdict := model.Authorized(cred)
	verdict.Verified = native && g.signalVerifiesIdentity()
	return verdict
}

// checkNativeSignal は判定自体が失敗した場合のみエラーを返す。
// プラットフォーム外からのリクエストは警告ログのみで通過させる。
func (g *Gate) checkNativeSignal(r *http.Request, cred model.Credential) (bool, error) {
	if g.signal == nil {
		g.recordSignal(SignalSkipped)
		return false, nil
	}

	native, err := g.signal.IsNativeRequest(r.Context(), r, cred)
	if err != nil {
		g.recordSignal(SignalError)
		return false, err
	}
	if !native {
		g.recordSignal(SignalNonNative)
		slog.Warn("request did not originate from the platform",
			slog.String("domain", cred.Domain),
			slog.String("path", r.URL.Path),
		)
		return false, nil
	}
	g.recordSignal(SignalNative)
	return true, nil
}

func (g *Gate) signalVerifiesIdentity() bool {
	v, ok := g.signal.(IdentityVerifier)
	return ok && v.VerifiesIdentity()
}

func (g *Gate) recordSignal(result string) {
	if g.recorder != nil {
		g.recorder.RecordNativeSignal(result)
	}
}

func (g *Gate) sanitize(s string) string {
	if g.sanitizer == nil {
		return s
	}
	return g.sanitizer.Sanitize(s)
}
