// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diff reports differences between expected and actual report
// text in tests.
package diff

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Diff returns a unified diff of want and have, labelled with name.
// It returns "" if they are equal. If the diff command is not
// available it falls back to quoting both strings.
func Diff(name, want, have string) string {
	if want == have {
		return ""
	}
	if _, err := exec.LookPath("diff"); err != nil {
		return fmt.Sprintf("%s differs (diff command unavailable)\nwant: %q\nhave: %q", name, want, have)
	}
	dir, err := os.MkdirTemp("", "sppreport-diff")
	if err != nil {
		return err.Error()
	}
	defer os.RemoveAll(dir)

	wantPath := filepath.Join(dir, name+".want")
	havePath := filepath.Join(dir, name+".have")
	if err := os.WriteFile(wantPath, []byte(want), 0666); err != nil {
		return err.Error()
	}
	if err := os.WriteFile(havePath, []byte(have), 0666); err != nil {
		return err.Error()
	}

	cmd := "diff"
	if runtime.GOOS == "plan9" {
		cmd = "/bin/ape/diff"
	}
	data, err := exec.Command(cmd, "-u", wantPath, havePath).CombinedOutput()
	if len(data) > 0 {
		// diff exits non-zero when the files differ.
		err = nil
	}
	if err != nil {
		data = append(data, err.Error()...)
	}
	return string(data)
}
