//go:build windows

package main

import (
	"golang.org/x/sys/windows"
)

const codePageUTF8 = 65001

// Card borders and colors need a UTF-8 code page and VT processing on the
// classic console.
func init() {
	_ = windows.SetConsoleOutputCP(codePageUTF8)
	enableVT(windows.STD_OUTPUT_HANDLE)
	enableVT(windows.STD_ERROR_HANDLE)
}

func enableVT(std uint32) {
	h, err := windows.GetStdHandle(std)
	if err != nil {
		return
	}
	var mode uint32
	if windows.GetConsoleMode(h, &mode) != nil {
		return
	}
	_ = windows.SetConsoleMode(h, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
}
