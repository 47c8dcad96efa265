package web

//go:generate go tool esbuild client/livereload.ts --bundle --minify --target=es2017 --outfile=livereload.js
