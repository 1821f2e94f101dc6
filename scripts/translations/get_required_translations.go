package main

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gaia-platform/gdev/pkg/i18n"
	"github.com/samber/lo"
)

// prints, per language, the messages still falling back to english
func main() {
	fmt.Print(getOutstandingTranslations(i18n.GetTranslationSets()))
}

// adapted from https://github.com/a8m/reflect-examples#read-struct-tags
func getOutstandingTranslations(sets map[string]i18n.TranslationSet) string {
	languages := lo.Keys(sets)
	sort.Strings(languages)

	var output strings.Builder
	for _, languageCode := range languages {
		output.WriteString(languageCode + ":\n")
		v := reflect.ValueOf(sets[languageCode])

		for i := 0; i < v.NumField(); i++ {
			if v.Field(i).String() == "" {
				output.WriteString("  " + v.Type().Field(i).Name + "\n")
			}
		}
	}
	return output.String()
}
