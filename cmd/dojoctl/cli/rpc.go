package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dojo-planner/dojo/internal/rpc"
)

// CallMethod invokes method through caller and writes the indented result to out.
// rawArgs must be a JSON object or empty.
func CallMethod(ctx context.Context, caller rpc.Caller, method, rawArgs string, out io.Writer) error {
	var args any
	if rawArgs != "" {
		if !json.Valid([]byte(rawArgs)) {
			return fmt.Errorf("rpc cli: args must be JSON: %w", rpc.ErrInvalidArgs)
		}
		args = json.RawMessage(rawArgs)
	}
	var result json.RawMessage
	if err := caller.Call(ctx, method, args, &result); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}

// HashSecret prints the bcrypt hash to store in RPC_API_SECRET_HASH.
func HashSecret(secret string, out io.Writer) error {
	if secret == "" {
		return fmt.Errorf("rpc cli: secret required")
	}
	hash, err := rpc.HashSecret(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}
