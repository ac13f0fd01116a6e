package models

// Arabic block bounds used for direction detection.
const (
	arabicFirst = 0x0600
	arabicLast  = 0x06FF
)

// DetectDirection returns rtl when text holds any Arabic-block code point.
func DetectDirection(text string) TextDirection {
	for _, r := range text {
		if r >= arabicFirst && r <= arabicLast {
			return DirectionRTL
		}
	}
	return DirectionLTR
}
