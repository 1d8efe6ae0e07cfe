package validation

import (
	"regexp"
	"strings"
)

// platePattern matches a 6 character license plate, the accepted alternative
// to a full VIN.
var platePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// vinWeights are the ISO 3779 position weights. Position 8 holds the check
// digit and carries weight zero.
var vinWeights = [17]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

// vinValues transliterates VIN characters to their numeric values. I, O and
// Q are not valid VIN characters and are absent.
var vinValues = map[byte]int{
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8,
	'J': 1, 'K': 2, 'L': 3, 'M': 4, 'N': 5, 'P': 7, 'R': 9,
	'S': 2, 'T': 3, 'U': 4, 'V': 5, 'W': 6, 'X': 7, 'Y': 8, 'Z': 9,
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4, '5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
}

// ValidVehicleID reports whether content is a checksum-valid 17 character
// VIN or a 6 character license plate. Input is uppercased before checking.
func ValidVehicleID(content string) bool {
	id := strings.ToUpper(strings.TrimSpace(content))
	switch len(id) {
	case 17:
		return validVIN(id)
	case 6:
		return platePattern.MatchString(id)
	default:
		return false
	}
}

// validVIN verifies the ISO 3779 check digit of a 17 character identifier.
func validVIN(id string) bool {
	sum := 0
	for i := 0; i < 17; i++ {
		v, ok := vinValues[id[i]]
		if !ok {
			return false
		}
		sum += v * vinWeights[i]
	}

	want := byte('0' + sum%11)
	if sum%11 == 10 {
		want = 'X'
	}
	return id[8] == want
}
