package server

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type spaStaticFS struct {
	base http.FileSystem
}

// NewStaticFS 以前端构建目录作为静态资源根，路径不存在时回退到 index.html。
// baseDir 为空时返回 nil，路由不会挂载 /static。
func NewStaticFS(baseDir string) http.FileSystem {
	if strings.TrimSpace(baseDir) == "" {
		return nil
	}
	return &spaStaticFS{base: gin.Dir(baseDir, false)}
}

func (s *spaStaticFS) Open(name string) (http.File, error) {
	file, err := s.base.Open(name)
	if err == nil {
		return file, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !strings.Contains(name, ".") {
		return s.base.Open("/index.html")
	}
	return nil, err
}
