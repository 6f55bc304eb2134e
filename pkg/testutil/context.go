package testutil

import (
	"net/http"

	id "qsync/pkg/domain"
	"qsync/pkg/requestcontext"
)

// WithActor sets the acting user the way the actor middleware would after
// validating a bearer token.
func WithActor(req *http.Request, userID, unit string) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), id.UserID(userID), unit)
	return req.WithContext(ctx)
}
