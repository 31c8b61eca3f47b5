package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/MarinX/keylogger"
	"github.com/dooshek/decibender/internal/keyboard"
	"github.com/dooshek/decibender/internal/logger"
	"github.com/dooshek/decibender/internal/types"
	"github.com/fatih/color"
)

type KeyPress struct {
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
}

// Implement types.KeyCombo for KeyPress
func (kp KeyPress) HasCtrl() bool  { return kp.Ctrl }
func (kp KeyPress) HasShift() bool { return kp.Shift }
func (kp KeyPress) HasAlt() bool   { return kp.Alt }
func (kp KeyPress) HasSuper() bool { return kp.Super }
func (kp KeyPress) GetKey() string { return kp.Key }

func (kp KeyPress) binding() types.KeyBinding {
	return types.KeyBinding{Key: kp.Key, Ctrl: kp.Ctrl, Shift: kp.Shift, Alt: kp.Alt, Super: kp.Super}
}

// RunWizard writes a starter configuration. devices are the capture device
// names offered to the user.
func RunWizard(devices []string) error {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	bold.Println("\n🔊  Welcome to the Decibender configuration wizard!")
	fmt.Println("\nThis wizard picks a microphone and, optionally, louder/quieter shortcuts.")

	reader := bufio.NewReader(os.Stdin)
	config := DefaultConfig()

	device, err := chooseDevice(reader, os.Stdout, devices)
	if err != nil {
		logger.Error("Failed to choose capture device", err)
		return err
	}
	config.Audio.Device = device

	cyan.Print("\nConfigure louder/quieter keyboard shortcuts? [y/N]: ")
	if yes, err := askYesNo(reader, false); err != nil {
		return err
	} else if yes {
		for _, target := range []struct {
			name    string
			binding *types.KeyBinding
		}{
			{"louder", &config.Hotkeys.Louder},
			{"quieter", &config.Hotkeys.Quieter},
		} {
			kp, err := askShortcut(reader, target.name)
			if err != nil {
				return err
			}
			*target.binding = kp.binding()
		}
		config.Hotkeys.Enabled = true
	}

	if err := Validate(config); err != nil {
		return err
	}

	if err := SaveConfig(config); err != nil {
		logger.Error("Failed to save config", err)
		return err
	}

	green.Println("\n✅ Configuration saved successfully!")
	fmt.Println("Edit ~/.config/decibender/decibender.yaml to set lights, Spotify and sounds.")
	return nil
}

func chooseDevice(reader *bufio.Reader, out io.Writer, devices []string) (string, error) {
	if len(devices) == 0 {
		return "", fmt.Errorf("no capture devices found")
	}

	fmt.Fprintln(out, "\nAvailable capture devices:")
	for i, name := range devices {
		fmt.Fprintf(out, "  %d) %s\n", i+1, name)
	}

	for {
		fmt.Fprintf(out, "Select device [1-%d]: ", len(devices))
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		n, err := strconv.Atoi(cleanInput(line))
		if err == nil && n >= 1 && n <= len(devices) {
			return devices[n-1], nil
		}
		fmt.Fprintln(out, "Invalid choice, try again.")
	}
}

func askShortcut(reader *bufio.Reader, name string) (KeyPress, error) {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	for {
		cyan.Printf("\nPress the %s key combination (Ctrl, Alt, Shift, Super + key)...\n", name)
		fmt.Println("Only a-z, 0-9, and `[]\\;',./-= keys are allowed.")

		keyPress, err := captureWaylandKeys()
		if err != nil {
			logger.Error("Failed to capture key", err)
			return KeyPress{}, err
		}

		yellow.Print("\nSelected shortcut is: ")
		printKeyCombination(keyPress, false)
		fmt.Print("\nDo you want to use this shortcut? [Y/n]: ")

		confirm, err := askYesNo(reader, true)
		if err != nil {
			return KeyPress{}, err
		}
		if confirm {
			return keyPress, nil
		}
		fmt.Println("\nOK, let's try again.")
	}
}

func askYesNo(reader *bufio.Reader, def bool) (bool, error) {
	response, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read input: %w", err)
	}
	switch strings.ToLower(cleanInput(response)) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// cleanInput trims whitespace and drops ASCII control characters
func cleanInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// printKeyCombination prints a key combination in a standardized format.
// If clearLine is true, it will clear the current line before printing.
func printKeyCombination(combo types.KeyCombo, clearLine bool) {
	if clearLine {
		fmt.Print("\033[2K\r")
		fmt.Print("Shortcut: ")
	}
	fmt.Print(keyboard.FormatCombo(combo))
}

func captureWaylandKeys() (KeyPress, error) {
	keyboards := keylogger.FindAllKeyboardDevices()
	if len(keyboards) == 0 {
		return KeyPress{}, fmt.Errorf("no keyboard devices found")
	}

	kbd, err := keylogger.New(keyboards[0])
	if err != nil {
		return KeyPress{}, fmt.Errorf("failed to initialize keylogger: %w", err)
	}
	defer kbd.Close()

	var keyPress KeyPress
	for e := range kbd.Read() {
		if e.Type != keylogger.EvKey {
			continue
		}
		code := e.Code
		pressed := e.KeyPress()
		if !pressed && !e.KeyRelease() {
			continue
		}

		switch code {
		case keyboard.WaylandLeftControl, keyboard.WaylandRightControl:
			keyPress.Ctrl = pressed
		case keyboard.WaylandLeftShift, keyboard.WaylandRightShift:
			keyPress.Shift = pressed
		case keyboard.WaylandLeftAlt, keyboard.WaylandRightAlt:
			keyPress.Alt = pressed
		case keyboard.WaylandSuper:
			keyPress.Super = pressed
		default:
			if key, ok := keyboard.WaylandKeyMap[code]; ok && pressed {
				keyPress.Key = key
				return keyPress, nil
			}
			continue
		}
		printKeyCombination(keyPress, true)
	}

	return KeyPress{}, fmt.Errorf("keyboard device closed")
}
