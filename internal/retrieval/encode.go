package retrieval

import "encoding/json"

type wireBlob struct {
	Text       string   `json:"text"`
	Partitions []string `json:"partitions"`
	ChunkCount int      `json:"chunk_count"`
}

func encodeBlob(b ContextBlob) ([]byte, bool) {
	raw, err := json.Marshal(wireBlob{Text: b.Text, Partitions: b.Partitions, ChunkCount: b.ChunkCount})
	if err != nil {
		return nil, false
	}
	return raw, true
}

func decodeBlob(raw []byte) (ContextBlob, bool) {
	var w wireBlob
	if err := json.Unmarshal(raw, &w); err != nil {
		return ContextBlob{}, false
	}
	return ContextBlob{Text: w.Text, Partitions: w.Partitions, ChunkCount: w.ChunkCount}, true
}
