package driver

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Command is a single SQL statement with optional positional arguments.
// Arguments are referenced as $1..$n in the statement text and encoded
// in the text format of the wire protocol.
type Command struct {
	SQL  string
	Args []any
}

// NewCommand builds a Command from statement text and arguments.
func NewCommand(sql string, args ...any) *Command {
	return &Command{SQL: sql, Args: args}
}

// Prepared references a named prepared statement with arguments.
type Prepared struct {
	Name string
	Args []any
}

// NewPrepared builds a Prepared command.
func NewPrepared(name string, args ...any) *Prepared {
	return &Prepared{Name: name, Args: args}
}

// encodeArgs converts Go argument values to text-format parameter values.
// A nil value maps to SQL NULL.
func encodeArgs(args []any) ([][]byte, []int16, error) {
	if len(args) == 0 {
		return nil, nil, nil
	}
	values := make([][]byte, len(args))
	formats := make([]int16, len(args)) // all text format
	for i, arg := range args {
		v, err := encodeArg(arg)
		if err != nil {
			return nil, nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, formats, nil
}

func encodeArg(arg any) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		// bytea hex input representation
		return []byte(`\x` + hex.EncodeToString(v)), nil
	case bool:
		if v {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int16:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float32:
		return strconv.AppendFloat(nil, float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
	case time.Time:
		return []byte(v.Format("2006-01-02 15:04:05.999999999Z07:00")), nil
	case time.Duration:
		return []byte(v.String()), nil
	case fmt.Stringer:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", arg)
	}
}
