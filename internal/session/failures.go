package session

import (
	"context"

	appi18n "github.com/pavelanni/verichat/internal/i18n"
	"github.com/pavelanni/verichat/internal/verify"
)

// failureText converts a transport failure into the human-readable string
// stored in Session.Error and narrated into the transcript. Rejections keep
// the service's own wording when it sent any.
func failureText(ctx context.Context, err error) string {
	f := verify.AsFailure(err)
	if f == nil {
		return appi18n.T(ctx, "ErrUnexpected")
	}
	switch f.Kind {
	case verify.FailTimeout:
		return appi18n.T(ctx, "ErrTimeout")
	case verify.FailNetwork:
		return appi18n.T(ctx, "ErrNetwork")
	case verify.FailServer:
		return appi18n.T(ctx, "ErrServer")
	case verify.FailNotFound:
		return appi18n.T(ctx, "ErrNotFound")
	default:
		if f.Message != "" {
			return f.Message
		}
		return appi18n.T(ctx, "ErrUnexpected")
	}
}
