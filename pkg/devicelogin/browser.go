package devicelogin

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// OpenBrowser opens the approval URL in the system browser. Suppressed when
// CARDBRIDGE_NO_BROWSER=true, which keeps CI and headless installs quiet.
func OpenBrowser(url string) error {
	if strings.EqualFold(os.Getenv("CARDBRIDGE_NO_BROWSER"), "true") {
		return nil
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if cmd == nil {
		return errors.New("no browser command available")
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}
