package hostfn

import (
	"github.com/fernlang/fernhost/abi"
)

// Argument buffer layouts. Multi-argument effects receive a record whose
// fields are the parameter names, placed by the abi layout rules.
var (
	keyArg = abi.RecordLayout(
		abi.Field{Name: "key", Size: abi.StrSize, Align: abi.StrAlign},
	)

	keyValueArg = abi.RecordLayout(
		abi.Field{Name: "key", Size: abi.StrSize, Align: abi.StrAlign},
		abi.Field{Name: "value", Size: abi.StrSize, Align: abi.StrAlign},
	)

	lineArg = abi.RecordLayout(
		abi.Field{Name: "line", Size: abi.StrSize, Align: abi.StrAlign},
	)

	urlArg = abi.RecordLayout(
		abi.Field{Name: "url", Size: abi.StrSize, Align: abi.StrAlign},
	)
)

// argString copies one string argument out of the arg buffer. The bytes
// are host-owned copies; the guest keeps ownership of the original.
func argString(env *Env, arg, offset uint32) (string, error) {
	b, err := abi.ReadStrBytes(env.Mem, arg+offset)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// retString allocates s in guest memory and writes its triple at ret,
// transferring ownership to the guest. Empty strings write the sentinel.
func retString(env *Env, ret uint32, s string) error {
	str, err := abi.NewStr(env.Mem, env.Heap, []byte(s))
	if err != nil {
		return err
	}
	return abi.WriteStr(env.Mem, ret, str)
}
