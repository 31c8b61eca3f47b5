package notification

import (
	"fmt"
	"os/exec"

	"github.com/dooshek/decibender/internal/logger"
)

type linuxNotifier struct{}

func (n *linuxNotifier) send(title, message string) error {
	logger.Debugf("Sending notification: %s - %s", title, message)
	if out, err := exec.Command("notify-send", "--app-name=decibender", title, message).CombinedOutput(); err != nil {
		return fmt.Errorf("notify-send failed: %w (%s)", err, out)
	}
	return nil
}
