// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detect

import (
	"math/big"
	"net/netip"
	"strings"
)

func digitsOnly(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func luhnCheck(number string) bool {
	sum := 0
	isDouble := false

	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')

		if isDouble {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}

		sum += digit
		isDouble = !isDouble
	}

	return sum%10 == 0
}

func validCreditCard(match string) bool {
	n := digitsOnly(match)
	if len(n) < 13 || len(n) > 19 || allSame(n) {
		return false
	}
	return luhnCheck(n)
}

// refineCreditCard finds the card inside a digit run that may carry trailing
// or leading numbers (an expiry date, a quantity). Sub-runs start and end on
// digit-group boundaries; the longest one passing Luhn wins, earliest on ties.
func refineCreditCard(match string) (int, int, bool) {
	type group struct{ start, end int }
	var groups []group
	for i := 0; i < len(match); {
		if match[i] < '0' || match[i] > '9' {
			i++
			continue
		}
		j := i
		for j < len(match) && match[j] >= '0' && match[j] <= '9' {
			j++
		}
		groups = append(groups, group{i, j})
		i = j
	}

	bestStart, bestEnd, bestDigits := 0, 0, 0
	for i := range groups {
		digits := 0
		for j := i; j < len(groups); j++ {
			digits += groups[j].end - groups[j].start
			if digits > 19 {
				break
			}
			if digits < 13 || digits <= bestDigits {
				continue
			}
			if validCreditCard(match[groups[i].start:groups[j].end]) {
				bestStart, bestEnd, bestDigits = groups[i].start, groups[j].end, digits
			}
		}
	}
	return bestStart, bestEnd, bestDigits > 0
}

// validSSN rejects numbers the SSA never issues: area 000, 666 or 9xx,
// group 00, serial 0000.
func validSSN(match string) bool {
	n := digitsOnly(match)
	if len(n) != 9 {
		return false
	}
	area, group, serial := n[:3], n[3:5], n[5:]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}

func validPhone(match string) bool {
	n := digitsOnly(match)
	return len(n) >= 10 && len(n) <= 15 && !allSame(n)
}

func validIPv4(match string) bool {
	addr, err := netip.ParseAddr(match)
	if err != nil || !addr.Is4() {
		return false
	}
	return !addr.IsUnspecified()
}

// validIBAN checks the ISO 13616 mod-97 remainder
func validIBAN(match string) bool {
	s := strings.ReplaceAll(match, " ", "")
	if len(s) < 15 || len(s) > 34 {
		return false
	}
	rearranged := s[4:] + s[:4]
	var sb strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteString(big.NewInt(int64(r-'A') + 10).String())
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(sb.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

var (
	verhoeffD = [10][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
		{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
		{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
		{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
		{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
		{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
		{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
		{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	verhoeffP = [8][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
		{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
		{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
		{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
		{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
		{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
		{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
	}
)

func verhoeffCheck(number string) bool {
	c := 0
	for i := 0; i < len(number); i++ {
		digit := int(number[len(number)-1-i] - '0')
		c = verhoeffD[c][verhoeffP[i%8][digit]]
	}
	return c == 0
}

func validAadhaar(match string) bool {
	n := digitsOnly(match)
	if len(n) != 12 || n[0] < '2' || allSame(n) {
		return false
	}
	return verhoeffCheck(n)
}

// validPAN checks the holder-type letter in the fourth position
func validPAN(match string) bool {
	return len(match) == 10 && strings.IndexByte("PCHABGJLFT", match[3]) >= 0
}
