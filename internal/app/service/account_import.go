package service

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/ikkim/cpportal-backend/internal/app/repository"
	"github.com/ikkim/cpportal-backend/pkg/logger"
	"github.com/ikkim/cpportal-backend/pkg/util"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// AccountRow 일괄 등록용 CP 계정 한 줄 (이메일, 이름, 연락처, 초기 비밀번호)
type AccountRow struct {
	Line     int
	Email    string
	Name     string
	Phone    string
	Password string
}

// ImportResult 일괄 등록 결과
type ImportResult struct {
	Created int
	Skipped []string
}

// ReadAccountsXLSX 첫 번째 시트를 읽는다. 첫 행은 헤더로 간주한다
func ReadAccountsXLSX(r io.Reader) ([]AccountRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var accounts []AccountRow
	for i, row := range rows {
		if i == 0 {
			continue
		}
		cell := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		if cell(0) == "" {
			continue
		}
		accounts = append(accounts, AccountRow{
			Line:     i + 1,
			Email:    normalizeEmail(cell(0)),
			Name:     cell(1),
			Phone:    cell(2),
			Password: cell(3),
		})
	}
	return accounts, nil
}

// ImportAccounts 없는 이메일만 CP 계정으로 생성한다
func ImportAccounts(userRepo repository.UserRepository, rows []AccountRow) (*ImportResult, error) {
	result := &ImportResult{}

	for _, row := range rows {
		skip := func(reason string) {
			result.Skipped = append(result.Skipped, fmt.Sprintf("line %d (%s): %s", row.Line, row.Email, reason))
		}

		if row.Name == "" {
			skip("missing name")
			continue
		}
		if err := util.CheckPasswordPolicy(row.Password); err != nil {
			skip(err.Error())
			continue
		}

		existing, err := userRepo.FindByEmail(row.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return result, err
		}
		if existing != nil {
			skip("email already exists")
			continue
		}

		hash, err := util.HashPassword(row.Password)
		if err != nil {
			return result, err
		}
		if err := userRepo.Create(&model.User{
			Email:        row.Email,
			PasswordHash: hash,
			Name:         row.Name,
			Phone:        row.Phone,
			Role:         model.RoleCP,
		}); err != nil {
			return result, fmt.Errorf("line %d: %w", row.Line, err)
		}
		result.Created++
	}

	logger.Info("CP accounts imported", map[string]interface{}{
		"created": result.Created,
		"skipped": len(result.Skipped),
	})
	return result, nil
}
