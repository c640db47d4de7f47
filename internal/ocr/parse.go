package ocr

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// engineResult mirrors the PP-StructureV3 JSON output. Newer engine versions
// nest the block list under "res"; older ones put it at the top level.
type engineResult struct {
	Res *struct {
		ParsingResList []Block `json:"parsing_res_list"`
	} `json:"res"`
	ParsingResList []Block `json:"parsing_res_list"`
}

// ParsePage decodes one engine result file into a Page.
func ParsePage(data []byte) (Page, error) {
	var result engineResult
	if err := json.Unmarshal(data, &result); err != nil {
		return Page{}, eris.Wrap(err, "unmarshal engine result")
	}

	if result.Res != nil {
		return Page{Blocks: result.Res.ParsingResList}, nil
	}
	return Page{Blocks: result.ParsingResList}, nil
}
