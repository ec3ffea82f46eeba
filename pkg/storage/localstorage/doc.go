// Package localstorage adapts the browser's window.localStorage to
// persist.Storage when compiled for js/wasm. On other platforms New reports
// ErrUnavailable.
package localstorage

import "errors"

// ErrUnavailable indicates the binary was not built for js/wasm or the host
// exposes no localStorage object.
var ErrUnavailable = errors.New("localstorage: not available on this platform")
