// Package mutation derives pyrimidine-normalized trinucleotide mutation classes.
package mutation

import "fmt"

// NumClasses is the size of the trinucleotide substitution alphabet.
const NumClasses = 96

var (
	flankOrder = [4]byte{'A', 'G', 'C', 'T'}
	refOrder   = [2]byte{'C', 'T'}

	classes     = buildClasses()
	classLookup = buildLookup(classes)
)

// buildClasses enumerates X[R>A]Y with X outermost, then Y, R and A.
func buildClasses() []string {
	out := make([]string, 0, NumClasses)
	for _, x := range flankOrder {
		for _, y := range flankOrder {
			for _, r := range refOrder {
				for _, a := range flankOrder {
					if r == a {
						continue
					}
					out = append(out, Label(x, r, a, y))
				}
			}
		}
	}
	return out
}

func buildLookup(labels []string) map[string]int {
	m := make(map[string]int, len(labels))
	for i, l := range labels {
		m[l] = i
	}
	return m
}

// Label formats a class as X[R>A]Y.
func Label(five, ref, alt, three byte) string {
	return fmt.Sprintf("%c[%c>%c]%c", five, ref, alt, three)
}

// Classes returns the 96 mutation classes in their canonical order.
// The returned slice is a copy.
func Classes() []string {
	out := make([]string, len(classes))
	copy(out, classes)
	return out
}

// Index returns the canonical row of a class label.
func Index(label string) (int, bool) {
	i, ok := classLookup[label]
	return i, ok
}

// IsClass reports whether label is one of the 96 classes.
func IsClass(label string) bool {
	_, ok := classLookup[label]
	return ok
}

// Complement returns the Watson-Crick complement of an unambiguous base.
func Complement(b byte) (byte, bool) {
	switch b {
	case 'A':
		return 'T', true
	case 'T':
		return 'A', true
	case 'C':
		return 'G', true
	case 'G':
		return 'C', true
	}
	return 0, false
}

// IsPurine reports whether b is A or G.
func IsPurine(b byte) bool {
	return b == 'A' || b == 'G'
}
