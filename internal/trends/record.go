package trends

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"blissbuilder/internal/storage"
)

var hashtagRegex = regexp.MustCompile(`#([\w\d_]+)`)

var asmrKeywords = []string{
	"asmr", "relaxing", "sleep", "calm", "soothing", "meditation",
	"whisper", "tingles", "peaceful", "ambient", "calming", "quiet",
	"soft spoken", "rain sounds", "nature sounds", "white noise",
}

// Record is one trending video as fetched. It is not modified after collection.
type Record struct {
	VideoID     string   `json:"video_id"`
	Title       string   `json:"title"`
	Channel     string   `json:"channel"`
	PublishedAt string   `json:"published_at"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
	Keywords    []string `json:"keywords"`
	ViewCount   uint64   `json:"view_count,string"`
}

// ExtractHashtags returns hashtags in order of first appearance, de-duplicated case-insensitively.
func ExtractHashtags(texts ...string) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, text := range texts {
		for _, match := range hashtagRegex.FindAllStringSubmatch(text, -1) {
			key := strings.ToLower(match[1])
			if seen[key] {
				continue
			}
			seen[key] = true
			tags = append(tags, match[1])
		}
	}
	return tags
}

func IsASMRRelated(title, description string, tags, hashtags []string) bool {
	combined := strings.ToLower(strings.Join([]string{
		title, description, strings.Join(tags, " "), strings.Join(hashtags, " "),
	}, " "))
	for _, kw := range asmrKeywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}

func Save(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trends: %w", err)
	}
	return storage.WriteFileAtomic(path, data)
}

func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trends: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse trends: %w", err)
	}
	return records, nil
}
