package main

import (
	"fmt"
	"os"

	"audit-server/internal/pkg/crypto"
)

// 生成 bcrypt 密码哈希，用于手工初始化用户数据
//
//	go run tools/gen_password.go <password>
//	ADMIN_PASSWORD=xxx go run tools/gen_password.go
func main() {
	password := os.Getenv("ADMIN_PASSWORD")
	if len(os.Args) > 1 {
		password = os.Args[1]
	}
	if password == "" {
		fmt.Fprintln(os.Stderr, "用法: gen_password <password>")
		os.Exit(1)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "生成哈希失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("原始密码: %s\n", password)
	fmt.Printf("bcrypt哈希: %s\n", hash)
}
