package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	xerrors "MintRelay/internal/errors"
)

// Converter 将 SVG 图片转换为 PNG 字节流。
type Converter interface {
	Convert(ctx context.Context, svg []byte) ([]byte, error)
}

// CommandConverter 通过调用外部命令完成转换,
// SVG 从标准输入写入, PNG 从标准输出读取。
type CommandConverter struct {
	command string
	args    []string
}

// NewCommandConverter 创建命令行转换器, 例如 rsvg-convert 或 inkscape。
func NewCommandConverter(command string, args []string) (*CommandConverter, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("未配置图片转换命令")
	}
	return &CommandConverter{command: command, args: args}, nil
}

// Convert 执行外部命令完成 SVG 到 PNG 的转换。
func (c *CommandConverter) Convert(ctx context.Context, svg []byte) ([]byte, error) {
	if len(svg) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "SVG 内容为空")
	}

	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = bytes.NewReader(svg)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("图片转换命令执行失败: %s: %w", detail, err)
		}
		return nil, fmt.Errorf("图片转换命令执行失败: %w", err)
	}

	if stdout.Len() == 0 {
		return nil, errors.New("图片转换命令没有输出任何内容")
	}
	return stdout.Bytes(), nil
}

var _ Converter = (*CommandConverter)(nil)
