// Package jsgen cross-compiles a stable-AST contract to a JavaScript
// function bundle, for tools that validate contract code in a
// general-purpose runtime instead of the VM.
package jsgen

import (
	"fmt"
	"strings"

	"github.com/polylang/polylang/pkg/stableast"
)

// Contract is the generated JavaScript bundle.
type Contract struct {
	Code string `json:"code"`
}

// GenerateContract renders every method of the contract as a JS function
// attached to a host-provided instance. The method bodies are the captured
// source text, byte for byte.
func GenerateContract(contract *stableast.Contract) Contract {
	var fns []string
	for _, attr := range contract.Attributes {
		method := attr.Method
		if method == nil {
			continue
		}
		fns = append(fns, fmt.Sprintf("instance.%s = %s", method.Name, generateFunction(method)))
	}

	return Contract{
		Code: fmt.Sprintf(`function error(str) {
    return new Error(str);
}

const instance = $$__instance;
%s;`, strings.Join(fns, ";")),
	}
}

func generateFunction(method *stableast.Method) string {
	var params []string
	for _, attr := range method.Attributes {
		if attr.Parameter != nil {
			params = append(params, attr.Parameter.Name)
		}
	}
	return fmt.Sprintf("function %s (%s) {\n%s\n}",
		method.Name, strings.Join(params, ", "), method.Code)
}
