package council

import (
	"fmt"
	"regexp"
	"strings"
)

// rankingMarker is the contract line judges are instructed to emit before
// their final ranking. Parsing anchors on its last occurrence so that a
// judge quoting the instructions earlier in its evaluation does not
// truncate the real ranking.
const rankingMarker = "FINAL RANKING:"

var (
	numberedLabelPattern = regexp.MustCompile(`\d+\.\s*(Response [A-Z])`)
	bareLabelPattern     = regexp.MustCompile(`Response [A-Z]`)
)

// assignLabels anonymizes the stage-1 responses: responses[i] becomes
// "Response A", "Response B", ... in settle order. The returned map
// inverts the assignment for de-anonymization. Council size is capped well
// below 26, so single letters always suffice.
func assignLabels(responses []StageResponse) (labels []string, labelToModel map[string]string) {
	labels = make([]string, len(responses))
	labelToModel = make(map[string]string, len(responses))
	for i, r := range responses {
		label := fmt.Sprintf("Response %c", rune('A'+i))
		labels[i] = label
		labelToModel[label] = r.Model
	}
	return labels, labelToModel
}

// ParseRanking extracts an ordered list of response labels from a judge's
// free text. It never fails: malformed or marker-less text degrades
// through two fallbacks and bottoms out at an empty (non-nil) list.
//
//  1. After the last rankingMarker occurrence, take numbered-list entries
//     ("1. Response A").
//  2. Failing that, take bare "Response X" mentions after the marker.
//  3. With no marker at all, take bare mentions anywhere in the text.
//
// Duplicate labels are preserved as-is; aggregation tolerates them.
func ParseRanking(text string) []string {
	section := text
	if idx := strings.LastIndex(text, rankingMarker); idx >= 0 {
		section = text[idx+len(rankingMarker):]
		if matches := numberedLabelPattern.FindAllStringSubmatch(section, -1); len(matches) > 0 {
			labels := make([]string, len(matches))
			for i, m := range matches {
				labels[i] = m[1]
			}
			return labels
		}
	}
	labels := bareLabelPattern.FindAllString(section, -1)
	if labels == nil {
		return []string{}
	}
	return labels
}
