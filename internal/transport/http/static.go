package httptransport

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// staticFallback 未匹配路由时尝试从静态目录返回文件
func staticFallback(dir string) gin.HandlerFunc {
	fs := gin.Dir(dir, false)
	fileServer := http.FileServer(fs)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			NotFound(c)
			return
		}

		f, err := fs.Open(path.Clean(c.Request.URL.Path))
		if err != nil {
			NotFound(c)
			return
		}
		stat, err := f.Stat()
		f.Close()
		if err != nil || stat.IsDir() {
			NotFound(c)
			return
		}

		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
