//go:build ignore

package resources

// This file is not used as go code, it is only scanned by rice in the
// append process, when it is looking for directories from which to
// append data.
import rice "github.com/GeertJohan/go.rice"

func boxes() {
	rice.FindBox("templates")
	rice.FindBox("languages")
}
