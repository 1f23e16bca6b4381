// Package filter classifies Java class names and drops heap records of
// unwanted classes before they reach a consumer.
package filter

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ClassCategory represents the category of a class.
type ClassCategory int

const (
	// CategoryUnknown is returned for an empty name.
	CategoryUnknown ClassCategory = iota
	// CategoryPrimitive covers primitive array classes such as "[I".
	CategoryPrimitive
	// CategoryJDK covers classes shipped with the JDK.
	CategoryJDK
	// CategoryFramework covers deep framework internals.
	CategoryFramework
	// CategoryApplication is everything else.
	CategoryApplication
)

// String returns the string representation of the category.
func (c ClassCategory) String() string {
	switch c {
	case CategoryPrimitive:
		return "primitive"
	case CategoryJDK:
		return "jdk"
	case CategoryFramework:
		return "framework"
	case CategoryApplication:
		return "application"
	default:
		return "unknown"
	}
}

var defaultJDKPrefixes = []string{
	"java.",
	"javax.",
	"jdk.",
	"sun.",
	"com.sun.",
}

var defaultFrameworkPrefixes = []string{
	"org.springframework.aop.framework.",
	"org.springframework.beans.factory.support.",
	"io.netty.buffer.Pool",
	"io.netty.util.internal.",
	"com.google.common.collect.",
	"com.google.common.cache.",
	"ch.qos.logback.core.",
	"com.fasterxml.jackson.databind.introspect.",
	"net.bytebuddy.",
	"io.opentelemetry.javaagent.tooling.",
}

const defaultCacheSize = 10000

// ClassFilter classifies class names and decides which are excluded.
// Names may be given in binary form ("java/lang/String") or dotted form;
// array names ("[Ljava/lang/String;") are classified by element type.
// It is safe for concurrent use.
type ClassFilter struct {
	mu                sync.RWMutex
	jdkPrefixes       []string
	frameworkPrefixes []string
	excludePrefixes   []string
	excluded          map[ClassCategory]bool

	cache *lru.Cache[string, ClassCategory]
}

// NewClassFilter creates a ClassFilter with the default JDK and
// framework rules and nothing excluded.
func NewClassFilter() *ClassFilter {
	cache, _ := lru.New[string, ClassCategory](defaultCacheSize)
	return &ClassFilter{
		jdkPrefixes:       append([]string(nil), defaultJDKPrefixes...),
		frameworkPrefixes: append([]string(nil), defaultFrameworkPrefixes...),
		excluded:          make(map[ClassCategory]bool),
		cache:             cache,
	}
}

// Normalize converts a binary class name to dotted form and strips array
// dimensions, e.g. "[[Ljava/lang/String;" becomes "java.lang.String".
// Primitive arrays keep their descriptor ("[I" stays "[I").
func Normalize(name string) string {
	elem := strings.TrimLeft(name, "[")
	if len(elem) != len(name) {
		if strings.HasPrefix(elem, "L") && strings.HasSuffix(elem, ";") {
			elem = elem[1 : len(elem)-1]
		} else {
			return name
		}
	}
	return strings.ReplaceAll(elem, "/", ".")
}

// Classify returns the category of a class.
func (f *ClassFilter) Classify(className string) ClassCategory {
	if className == "" {
		return CategoryUnknown
	}
	if c, ok := f.cache.Get(className); ok {
		return c
	}
	c := f.classifyUncached(className)
	f.cache.Add(className, c)
	return c
}

func (f *ClassFilter) classifyUncached(className string) ClassCategory {
	name := Normalize(className)
	if strings.HasPrefix(name, "[") {
		return CategoryPrimitive
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if hasAnyPrefix(name, f.jdkPrefixes) {
		return CategoryJDK
	}
	if hasAnyPrefix(name, f.frameworkPrefixes) {
		return CategoryFramework
	}
	return CategoryApplication
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Exclude marks whole categories as excluded.
func (f *ClassFilter) Exclude(categories ...ClassCategory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range categories {
		f.excluded[c] = true
	}
}

// ExcludePrefix excludes classes whose dotted name starts with one of
// the prefixes. Binary-form prefixes are accepted.
func (f *ClassFilter) ExcludePrefix(prefixes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range prefixes {
		if p = strings.ReplaceAll(strings.TrimSpace(p), "/", "."); p != "" {
			f.excludePrefixes = append(f.excludePrefixes, p)
		}
	}
}

// AddJDKPrefix adds a prefix classified as CategoryJDK.
func (f *ClassFilter) AddJDKPrefix(prefix string) {
	f.mu.Lock()
	f.jdkPrefixes = append(f.jdkPrefixes, prefix)
	f.mu.Unlock()
	f.cache.Purge()
}

// Active reports whether the filter excludes anything.
func (f *ClassFilter) Active() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.excluded) > 0 || len(f.excludePrefixes) > 0
}

// Excluded reports whether records of className should be dropped.
// Unknown (empty) names are never excluded.
func (f *ClassFilter) Excluded(className string) bool {
	c := f.Classify(className)
	if c == CategoryUnknown {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.excluded[c] {
		return true
	}
	return hasAnyPrefix(Normalize(className), f.excludePrefixes)
}
