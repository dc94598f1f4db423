package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// candidates lists Chromium-family executables probed when no path is
// configured. Firefox is not listed: the resolver needs target events that
// only Chromium's DevTools protocol delivers.
func candidates() []string {
	switch runtime.GOOS {
	case "windows":
		programFiles := os.Getenv("PROGRAMFILES")
		programFilesX86 := os.Getenv("PROGRAMFILES(X86)")
		localAppData := os.Getenv("LOCALAPPDATA")

		if programFiles == "" {
			programFiles = `C:\Program Files`
		}
		if programFilesX86 == "" {
			programFilesX86 = `C:\Program Files (x86)`
		}
		if localAppData == "" {
			localAppData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}

		return []string{
			filepath.Join(programFiles, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFilesX86, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Chromium", "Application", "chrome.exe"),
			filepath.Join(programFiles, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(programFilesX86, "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(programFiles, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
		}

	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		}

	default:
		return []string{
			"chromium-browser",
			"chromium",
			"google-chrome",
			"google-chrome-stable",
			"headless-shell",
			"microsoft-edge",
			"brave-browser",
		}
	}
}

// Find resolves the browser executable. An explicit path may be absolute or
// a command looked up in PATH.
func Find(customPath string) (string, error) {
	if customPath != "" {
		if p, ok := probe(customPath); ok {
			return p, nil
		}
		return "", fmt.Errorf("specified browser not found: %s", customPath)
	}

	for _, c := range candidates() {
		if p, ok := probe(c); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("no supported browser found; install Chrome or Chromium, or set browser.path in the config")
}

func probe(candidate string) (string, bool) {
	if filepath.IsAbs(candidate) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
		return "", false
	}
	p, err := exec.LookPath(candidate)
	if err != nil {
		return "", false
	}
	return p, true
}
