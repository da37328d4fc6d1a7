package settings

import "strings"

// FolderNamer maps conversation ids to CMS folder names, `<root><sep><id>`.
type FolderNamer struct {
	prefix string
}

func NewFolderNamer(root, separator string) *FolderNamer {
	return &FolderNamer{prefix: root + separator}
}

// FolderFor returns the folder of a contact or group chat id.
func (n *FolderNamer) FolderFor(id string) string {
	return n.prefix + id
}

// IDFor returns the conversation id of a CMS folder.
func (n *FolderNamer) IDFor(folder string) (string, bool) {
	id, ok := strings.CutPrefix(folder, n.prefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Manages reports whether folder is a conversation folder under the root.
func (n *FolderNamer) Manages(folder string) bool {
	_, ok := n.IDFor(folder)
	return ok
}
