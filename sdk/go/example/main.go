package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	audit "audit-server/sdk/go"
)

func main() {
	serverURL := envOr("AUDIT_SERVER_URL", "http://localhost:8000")
	username := envOr("AUDIT_USERNAME", "admin")
	password := os.Getenv("AUDIT_PASSWORD")

	fmt.Println("========================================")
	fmt.Println("        Audit SDK 功能演示")
	fmt.Println("========================================")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := audit.NewClient(serverURL, audit.WithTimeout(10*time.Second))

	// 1. 登录
	login, err := client.Login(ctx, username, password)
	if err != nil {
		log.Fatalf("登录失败: %v", err)
	}
	fmt.Printf("登录成功: user=%s role=%s tenant=%s (有效期 %ds)\n",
		login.UserID, login.Role, login.TenantID, login.ExpiresIn)

	// 2. 写入审计日志
	message := "订单已创建"
	entry, err := client.CreateLog(ctx, audit.CreateLogRequest{
		Action:       "CREATE",
		ResourceType: "order",
		ResourceID:   "demo-1",
		Message:      &message,
		AfterState:   map[string]interface{}{"status": "pending", "amount": 99.5},
	})
	if err != nil {
		log.Fatalf("写入日志失败: %v", err)
	}
	fmt.Printf("写入日志: id=%s severity=%s\n", entry.ID, entry.Severity)

	// 3. 查询今日日志
	today := time.Now().UTC().Format("2006-01-02")
	page, err := client.ListLogs(ctx, audit.ListLogsParams{
		StartDate: today,
		EndDate:   today,
		PageSize:  20,
	})
	if err != nil {
		log.Fatalf("查询日志失败: %v", err)
	}
	fmt.Printf("今日日志: 共 %d 条，第 %d/%d 页\n", page.Total, page.Page, page.TotalPages)
	for _, l := range page.Logs {
		fmt.Printf("  [%s] %s %s/%s %s\n", l.Timestamp.Format(time.RFC3339), l.Severity, l.ResourceType, l.ResourceID, l.Action)
	}

	// 4. 统计
	stats, err := client.Stats(ctx, "")
	if err != nil {
		if audit.IsForbidden(err) {
			fmt.Println("无权查看统计")
			return
		}
		log.Fatalf("获取统计失败: %v", err)
	}
	fmt.Printf("统计: 共 %d 条\n", stats.TotalLogs)
	for action, n := range stats.ActionCounts {
		fmt.Printf("  %-10s %d\n", action, n)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
