package rawurl

import "fmt"

var errMissingScheme = fmt.Errorf("URL must include scheme (http:// or https://)")
var errMissingHost = fmt.Errorf("URL must include a host")

func errUnsupportedScheme(scheme string) error {
	return fmt.Errorf("unsupported scheme %q (must be http or https)", scheme)
}

func errInvalidPort(port string) error {
	return fmt.Errorf("invalid port %q (must be 1-65535)", port)
}
