// Package auth guards the monitor's mutating HTTP routes.
//
// APIKey(mode, header, key) wraps an http.Handler and checks the named
// request header against key. When mode != "apikey" or key == "" every
// request passes, which keeps local demos friction-free.
package auth
