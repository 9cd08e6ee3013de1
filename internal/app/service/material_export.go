package service

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ikkim/cpportal-backend/internal/app/model"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Materials"

var exportHeaders = []string{
	"자료 ID", "CP ID", "CP 이름", "사업자등록번호", "웹사이트",
	"인증 이미지", "상태", "반려 사유", "심사 요청일", "심사 완료일", "수정일",
}

// WriteMaterialsXLSX 심사 대기열을 엑셀 파일로 내보낸다 (이미지 URL은 줄바꿈으로 구분)
func WriteMaterialsXLSX(w io.Writer, materials []model.Material) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, m := range materials {
		row := []interface{}{
			m.ID,
			m.CPID,
			m.CpName,
			m.BusinessLicense,
			m.Website,
			strings.Join(m.VerificationImages, "\n"),
			m.Status.Badge().Label,
			m.ReviewComment,
			formatExportTime(m.SubmittedAt),
			formatExportTime(m.ReviewedAt),
			m.UpdatedAt.Format(time.DateTime),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	return f.Write(w)
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateTime)
}
