package debugger

import (
	"os"
	"path/filepath"
	"strings"
)

// FileSystemLocator 在本地文件系统中查找被调试进程上报的文件
type FileSystemLocator struct {
	extensions []string
	workDir    string
}

func NewFileSystemLocator(extensions []string) *FileSystemLocator {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	wd, _ := os.Getwd()
	return &FileSystemLocator{
		extensions: extensions,
		workDir:    wd,
	}
}

// FindFile 查找顺序：绝对路径直接判断；去掉./后先在各个root下查找，
// 再到工作目录下查找。文件名没有后缀时依次补全后缀
func (l *FileSystemLocator) FindFile(path string, roots []string) (string, bool) {
	if path == "" || strings.HasPrefix(path, "[") {
		return "", false
	}
	if filepath.IsAbs(path) {
		return path, isFile(path)
	}
	path = strings.TrimPrefix(strings.TrimPrefix(path, "./"), ".\\")
	candidates := l.candidates(path)

	dirs := make([]string, 0, len(roots)+1)
	for _, root := range roots {
		if strings.TrimSpace(root) != "" {
			dirs = append(dirs, root)
		}
	}
	if l.workDir != "" {
		dirs = append(dirs, l.workDir)
	}
	for _, dir := range dirs {
		for _, name := range candidates {
			full := filepath.Join(dir, name)
			if isFile(full) {
				return full, true
			}
		}
	}
	return "", false
}

func (l *FileSystemLocator) candidates(path string) []string {
	if filepath.Ext(path) != "" {
		return []string{path}
	}
	answer := make([]string, 0, len(l.extensions))
	for _, ext := range l.extensions {
		answer = append(answer, path+ext)
	}
	return answer
}

func (l *FileSystemLocator) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
