package engine

import "github.com/DoyleJ11/quiz-match-backend/internal/matcherr"

// ControlKey selects what the projection screen currently shows.
type ControlKey string

const (
	ControlBackground     ControlKey = "background"
	ControlQuestion       ControlKey = "question"
	ControlQuestionInfo   ControlKey = "questionInfo"
	ControlAnswer         ControlKey = "answer"
	ControlExplanation    ControlKey = "explanation"
	ControlMatchDiagram   ControlKey = "matchDiagram"
	ControlContestantList ControlKey = "contestantList"
	ControlWinGold        ControlKey = "wingold"
	ControlEliminated     ControlKey = "eliminated"
	ControlRescueQR       ControlKey = "qrcode"
	ControlRescueChart    ControlKey = "chart"
	ControlResult         ControlKey = "result"
	ControlAward          ControlKey = "award"
	ControlVideo          ControlKey = "video"
	ControlAudio          ControlKey = "audio"
	ControlImage          ControlKey = "image"
)

var controlKeys = map[ControlKey]bool{
	ControlBackground:     false,
	ControlQuestion:       false,
	ControlQuestionInfo:   false,
	ControlAnswer:         false,
	ControlExplanation:    false,
	ControlMatchDiagram:   false,
	ControlContestantList: false,
	ControlWinGold:        false,
	ControlEliminated:     false,
	ControlRescueQR:       false,
	ControlRescueChart:    false,
	ControlResult:         false,
	ControlAward:          false,
	ControlVideo:          true,
	ControlAudio:          true,
	ControlImage:          true,
}

func (k ControlKey) Valid() bool {
	_, ok := controlKeys[k]
	return ok
}

// IsMedia reports whether the key carries playable media and therefore
// accepts a ControlValue.
func (k ControlKey) IsMedia() bool {
	return controlKeys[k]
}

type ControlValue string

const (
	ControlStart   ControlValue = "start"
	ControlPause   ControlValue = "pause"
	ControlReset   ControlValue = "reset"
	ControlZoomIn  ControlValue = "zoomin"
	ControlZoomOut ControlValue = "zoomout"
)

func (v ControlValue) Valid() bool {
	switch v {
	case ControlStart, ControlPause, ControlReset, ControlZoomIn, ControlZoomOut:
		return true
	}
	return false
}

type ScreenControl struct {
	ControlKey   ControlKey   `json:"controlKey"`
	ControlValue ControlValue `json:"controlValue,omitempty"`
	Media        string       `json:"media,omitempty"`
}

func (sc ScreenControl) Validate() error {
	if !sc.ControlKey.Valid() {
		return matcherr.Validation("unknown controlKey %q", sc.ControlKey)
	}
	if sc.ControlValue != "" {
		if !sc.ControlValue.Valid() {
			return matcherr.Validation("unknown controlValue %q", sc.ControlValue)
		}
		if !sc.ControlKey.IsMedia() {
			return matcherr.Validation("controlValue %q is only allowed with video, audio or image, got %q", sc.ControlValue, sc.ControlKey)
		}
	}
	if sc.Media != "" && !validMediaURL(sc.Media) {
		return matcherr.Validation("media %q is not a valid URL", sc.Media)
	}
	return nil
}
