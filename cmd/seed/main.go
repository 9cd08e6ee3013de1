package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ikkim/cpportal-backend/config"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	"github.com/ikkim/cpportal-backend/internal/app/service"
	"github.com/ikkim/cpportal-backend/internal/db"
)

// CP 계정 일괄 등록
// 시트 첫 행은 헤더: 이메일 | 이름 | 연락처 | 초기 비밀번호
func main() {
	// 명령줄 인자 확인
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <accounts.xlsx>")
	}

	filePath := os.Args[1]

	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// DB 연결
	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// XLSX 파일 읽기
	fmt.Printf("Reading XLSX file: %s\n", filePath)
	f, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open XLSX:", err)
	}
	rows, err := service.ReadAccountsXLSX(f)
	f.Close()
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total accounts to import: %d\n", len(rows))

	// 사용자 확인
	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	result, err := service.ImportAccounts(repository.NewUserRepository(db.GetDB()), rows)
	if err != nil {
		log.Fatal("Failed to import accounts:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Created: %d, skipped: %d\n", result.Created, len(result.Skipped))
	if len(result.Skipped) > 0 {
		fmt.Println(strings.Join(result.Skipped, "\n"))
	}
}
