package notification

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/dooshek/decibender/internal/logger"
)

type darwinNotifier struct{}

func (n *darwinNotifier) send(title, message string) error {
	logger.Debugf("Sending macOS notification: %s - %s", title, message)
	cmd := exec.Command("osascript", "-e", appleScript(title, message))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("osascript failed: %w", err)
	}
	return nil
}

func appleScript(title, message string) string {
	quote := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return fmt.Sprintf(`display notification "%s" with title "%s"`, quote.Replace(message), quote.Replace(title))
}
