// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package callback

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openSystemBrowser launches the platform default browser.
func openSystemBrowser(url string) error {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32.exe", "url.dll,FileProtocolHandler", url).Start()
	default:
		return fmt.Errorf("cannot open browser on platform %s", runtime.GOOS)
	}
}
