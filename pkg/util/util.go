package util

import (
	"fmt"

	"github.com/goccy/go-json"
)

func Dump(o interface{}) {
	b, _ := json.MarshalIndent(o, "", "  ")
	fmt.Printf("--- DUMP ---\n\n%s\n\n", string(b))
}
