package queue

// IngestDocumentMsg asks the worker to run one document through the
// pipeline. Content carries inline text; S3Key points at the object store
// instead. Exactly one of the two is set.
type IngestDocumentMsg struct {
	DocumentID string `json:"document_id"`
	DomainID   string `json:"domain_id"`
	Content    string `json:"content,omitempty"`
	S3Key      string `json:"s3_key,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
}

// DetectCommunitiesMsg asks the worker to recompute the community snapshot.
type DetectCommunitiesMsg struct {
	RequestedBy string `json:"requested_by,omitempty"`
}
