package model

// File names of the artifacts pushed to the hosted repository
const (
	ArtifactPage          = "index.html"
	ArtifactDescription   = "README.md"
	ArtifactPagesWorkflow = ".github/workflows/pages.yml"
)

// Artifact is a generated text file destined for the repository
type Artifact struct {
	Name    string
	Content string
}

// Repository is what the code host reports after creating a repository
type Repository struct {
	Owner   string
	Name    string
	HTMLURL string
}
