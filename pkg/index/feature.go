// ABOUTME: Index feature flags and feature sets
// ABOUTME: Capabilities advertise a FeatureSet, requests are matched by superset

package index

import (
	"strconv"
	"strings"
)

// Feature is a query or structural property an index may support.
type Feature uint8

const (
	UNIQUE   Feature = iota // at most one entity per value
	COMPOUND                // spans several attributes
	EQ                      // equality
	IN                      // membership in a value set
	LT                      // less than
	GT                      // greater than
	BT                      // between
	SW                      // string starts with
	EW                      // string ends with
	SC                      // string contains
	CI                      // string contained in
	RX                      // regular expression
	HS                      // has a value
	AQ                      // all entities
	QZ                      // quantized keys
)

var featureNames = [...]string{
	UNIQUE:   "UNIQUE",
	COMPOUND: "COMPOUND",
	EQ:       "EQ",
	IN:       "IN",
	LT:       "LT",
	GT:       "GT",
	BT:       "BT",
	SW:       "SW",
	EW:       "EW",
	SC:       "SC",
	CI:       "CI",
	RX:       "RX",
	HS:       "HS",
	AQ:       "AQ",
	QZ:       "QZ",
}

func (f Feature) String() string {
	if int(f) < len(featureNames) {
		return featureNames[f]
	}
	return "Feature(" + strconv.Itoa(int(f)) + ")"
}

// ParseFeature looks a feature up by name.
func ParseFeature(name string) (Feature, bool) {
	for i, n := range featureNames {
		if n == name {
			return Feature(i), true
		}
	}
	return 0, false
}

// FeatureSet is a set of features.
type FeatureSet uint16

// Features builds a set from individual features.
func Features(fs ...Feature) FeatureSet {
	var s FeatureSet
	for _, f := range fs {
		s |= 1 << f
	}
	return s
}

// Has reports whether f is in the set.
func (s FeatureSet) Has(f Feature) bool { return s&(1<<f) != 0 }

// Contains reports whether s is a superset of o.
func (s FeatureSet) Contains(o FeatureSet) bool { return s&o == o }

// List returns the features in declaration order.
func (s FeatureSet) List() []Feature {
	var out []Feature
	for f := UNIQUE; f <= QZ; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FeatureSet) String() string {
	names := make([]string, 0, len(featureNames))
	for _, f := range s.List() {
		names = append(names, f.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
