package excel

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/digkill/StageRank/internal/models"
)

// ContentType is the MIME type of generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StageBoard is one sheet of the leaderboard workbook.
type StageBoard struct {
	Code string
	Runs []models.RunLog
}

var leaderboardHeader = []any{"Rank", "Seq", "User", "Prompt length", "Clear time (ms)", "Created at"}

// WriteLeaderboards renders one sheet per stage. Runs are expected fastest
// first; ties share a rank.
func WriteLeaderboards(boards []StageBoard) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if len(boards) == 0 {
		boards = []StageBoard{{Code: "Empty"}}
	}

	for i, board := range boards {
		sheet := board.Code
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", sheet, err)
		}

		if err := f.SetSheetRow(sheet, "A1", &leaderboardHeader); err != nil {
			return nil, fmt.Errorf("write header %s: %w", sheet, err)
		}

		rank := 0
		for j, run := range board.Runs {
			if j == 0 || run.ClearTimeMs != board.Runs[j-1].ClearTimeMs {
				rank = j + 1
			}
			row := []any{rank, run.Seq, run.UserID, run.PromptLength, run.ClearTimeMs, run.CreatedAt.UTC().Format("2006-01-02 15:04:05")}
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return nil, fmt.Errorf("write row %s/%d: %w", sheet, j+2, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
