package negotiate

import "fmt"

func errUnexpectedLine(payload []byte) error {
	return fmt.Errorf("unexpected line %q", string(payload))
}

func errServerRejected(msg string) error {
	return fmt.Errorf("server rejected fetch: %s", msg)
}
