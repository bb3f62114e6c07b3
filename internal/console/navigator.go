package console

import (
	"context"
	"sync/atomic"

	"github.com/jaqcquesndav/Wanzo-admin/internal/apiclient"
)

type navigationKey struct{}

// LoginNavigator records that the API client gave up on the session. The
// handler that made the call turns the record into a redirect to the login
// route once the call returns.
var LoginNavigator = apiclient.NavigatorFunc(func(ctx context.Context) {
	if flag, ok := ctx.Value(navigationKey{}).(*atomic.Bool); ok {
		flag.Store(true)
	}
})

func withNavigation(ctx context.Context) context.Context {
	return context.WithValue(ctx, navigationKey{}, new(atomic.Bool))
}

func navigatedToLogin(ctx context.Context) bool {
	flag, ok := ctx.Value(navigationKey{}).(*atomic.Bool)
	return ok && flag.Load()
}
