// Package admin は解決済みユーザーの管理者権限判定を提供する。
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/embedgate/internal/model"
)

// ErrAuthorizationCheckFailed はリモートの管理者チェックが失敗したことを示す。
var ErrAuthorizationCheckFailed = errors.New("authorization check failed")

// RemoteAdminCheck はプラットフォームに管理者権限を問い合わせるインターフェース。
// 通信失敗時はエラーを返す。
type RemoteAdminCheck interface {
	CheckAdmin(ctx context.Context, token, domain string) (bool, error)
}

// DecisionRecorder は判定結果を記録するインターフェース。
// metrics.Collectorが実装する。
type DecisionRecorder interface {
	RecordAdminDecision(source string, isAdmin bool)
}

// Checker はローカルのユーザーレコードを優先し、
// 判断できない場合のみリモートに問い合わせて管理者権限を判定する。
type Checker struct {
	remote   RemoteAdminCheck
	recorder DecisionRecorder
}

// NewChecker はCheckerを生成する。recorderはnilでもよい。
func NewChecker(remote RemoteAdminCheck, recorder DecisionRecorder) *Checker {
	return &Checker{remote: remote, recorder: recorder}
}

// IsAdmin はユーザーが管理者かどうかを返す。
// リモートチェックの失敗はErrAuthorizationCheckFailedでラップして返し、
// falseとして扱わない。
func (c *Checker) IsAdmin(ctx context.Context, user model.UserRecord, cred model.Credential) (bool, error) {
	decision, err := c.Decide(ctx, user, cred)
	if err != nil {
		return false, err
	}
	return decision.IsAdmin, nil
}

// Decide は管理者判定を行い、判定の根拠とともに返す。
func (c *Checker) Decide(ctx context.Context, user model.UserRecord, cred model.Credential) (model.AdminDecision, error) {
	// 1. ADMINフィールド
	if v, ok := user[model.UserFieldAdmin]; ok && isTruthyFlag(v) {
		return c.record(model.AdminDecision{IsAdmin: true, Source: model.AdminSourceAdminFlag}), nil
	}

	// 2. IS_ADMINフィールド
	if v, ok := user[model.UserFieldIsAdmin]; ok && isTruthyFlag(v) {
		return c.record(model.AdminDecision{IsAdmin: true, Source: model.AdminSourceIsAdminFlag}), nil
	}

	// 3. ローカルで判断できない場合のみリモートに問い合わせる
	if c.remote == nil {
		return model.AdminDecision{}, fmt.Errorf("%w: remote admin check is not configured", ErrAuthorizationCheckFailed)
	}
	isAdmin, err := c.remote.CheckAdmin(ctx, cred.Token, cred.Domain)
	if err != nil {
		slog.Error("remote admin check failed",
			slog.String("domain", cred.Domain),
			slog.String("error", err.Error()),
		)
		return model.AdminDecision{}, fmt.Errorf("%w: %w", ErrAuthorizationCheckFailed, err)
	}

	return c.record(model.AdminDecision{IsAdmin: isAdmin, Source: model.AdminSourceRemote}), nil
}

func (c *Checker) record(d model.AdminDecision) model.AdminDecision {
	if c.recorder != nil {
		c.recorder.RecordAdminDecision(string(d.Source), d.IsAdmin)
	}
	return d
}
