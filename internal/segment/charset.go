package segment

import "regexp"

const (
	gsmBasic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

	// Extended characters need an escape and cost two units each.
	gsmExtended = "^{}\\[~]|€"
)

var (
	basicSet    = runeSet(gsmBasic)
	extendedSet = runeSet(gsmExtended)

	emojiPattern = regexp.MustCompile(`[` +
		`\x{1F600}-\x{1F64F}` +
		`\x{1F300}-\x{1F5FF}` +
		`\x{1F680}-\x{1F6FF}` +
		`\x{1F1E0}-\x{1F1FF}` +
		`\x{2702}-\x{27B0}` +
		`\x{24C2}-\x{1F251}` +
		`\x{1F900}-\x{1F9FF}` +
		`\x{1F018}-\x{1F270}` +
		`]+`)
)

func runeSet(s string) map[rune]struct{} {
	m := make(map[rune]struct{}, len(s))
	for _, r := range s {
		m[r] = struct{}{}
	}
	return m
}

func isGSM(r rune) bool {
	if _, ok := basicSet[r]; ok {
		return true
	}
	_, ok := extendedSet[r]
	return ok
}

func isExtended(r rune) bool {
	_, ok := extendedSet[r]
	return ok
}
