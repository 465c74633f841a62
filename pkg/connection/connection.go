package connection

import (
	"context"
	"io"
)

type Connection interface {
	// 调用任意远程命令: name 中的下划线替换为空格
	Call(name string, args ...any) (string, error)

	// 原始发送/接收
	Send(cmd string) error
	Receive() (string, error)
	Read() string

	// 诊断与版本
	Test(w io.Writer) error
	Version() string

	// 轮询 RunningScan 直到扫描结束或次数耗尽
	WaitForScan(ctx context.Context, maxIterations int) (bool, error)

	// 关闭连接
	Close() error
	IsClosed() bool

	// 远端地址（用于日志）
	RemoteAddr() string
}

var _ Connection = (*TCPConnection)(nil)
