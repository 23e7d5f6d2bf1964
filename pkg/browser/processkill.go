package browser

import (
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// killProcessTree kills Chrome and every helper process it spawned.
// Killing only the parent leaves renderer, GPU and crashpad children running:
// on Windows they block shutdown, elsewhere they are reparented to PID 1.
func killProcessTree(proc *os.Process) {
	if proc == nil {
		return
	}
	if runtime.GOOS == "windows" {
		_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(proc.Pid)).Run()
		return
	}
	// chromedp starts Chrome in its own process group, so the group ID is
	// the parent PID and a negative PID reaches the whole group.
	if err := exec.Command("kill", "-9", "--", "-"+strconv.Itoa(proc.Pid)).Run(); err != nil {
		_ = proc.Kill()
	}
}
