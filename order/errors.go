package order

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownOrder = errors.New("unknown order")
	// ErrInvalidState 非法状态迁移；任何静默吞掉它的路径都是 bug。
	ErrInvalidState = errors.New("invalid state transition")
	// ErrOverFill 成交量超过剩余委托量，账本已不可信。
	ErrOverFill = errors.New("fill exceeds remaining quantity")
)

// ValidationError 提交前的本地校验失败；不产生账本记录。
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s %s", e.Field, e.Msg)
}

// IsValidation 判断错误是否为本地校验失败。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
