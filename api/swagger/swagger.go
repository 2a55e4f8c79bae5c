package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Exam Ranking API",
        "description": "Score import, ranking recompute and exam analysis service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scores", "description": "Score records and bulk import"},
        {"name": "Rankings", "description": "Rank recomputation"},
        {"name": "Analysis", "description": "Class and grade analysis"}
    ],
    "paths": {
        "/scores": {
            "get": {
                "tags": ["Scores"],
                "summary": "List score records",
                "parameters": [
                    {"name": "examId", "in": "query", "type": "string", "required": true},
                    {"name": "gradeLevel", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "subjectCode", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/import": {
            "post": {
                "tags": ["Scores"],
                "summary": "Bulk import scores from a CSV upload",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "examId", "in": "formData", "type": "string", "required": true},
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "200": {"description": "Import result", "schema": {"$ref": "#/definitions/ImportResult"}}
                }
            }
        },
        "/scores/import/template": {
            "get": {
                "tags": ["Scores"],
                "summary": "Download the CSV import template",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV template"}
                }
            }
        },
        "/rankings/recompute": {
            "post": {
                "tags": ["Rankings"],
                "summary": "Recompute rankings synchronously",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecomputeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Recompute result", "schema": {"$ref": "#/definitions/RecomputeResult"}},
                    "422": {"description": "Recompute failed", "schema": {"$ref": "#/definitions/RecomputeResult"}}
                }
            }
        },
        "/rankings/recompute/async": {
            "post": {
                "tags": ["Rankings"],
                "summary": "Submit a ranking recompute to the background queue",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecomputeRequest"}}
                ],
                "responses": {
                    "202": {"description": "Submitted"},
                    "200": {"description": "Queue degraded, recompute skipped"}
                }
            }
        },
        "/analysis/class": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Class analysis for one exam",
                "parameters": [
                    {"name": "examId", "in": "query", "type": "string", "required": true},
                    {"name": "classId", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analysis/grade": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Grade-level analysis for one exam",
                "parameters": [
                    {"name": "examId", "in": "query", "type": "string", "required": true},
                    {"name": "gradeLevel", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/analysis/class/export": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Export a class analysis ranking table",
                "parameters": [
                    {"name": "examId", "in": "query", "type": "string", "required": true},
                    {"name": "classId", "in": "query", "type": "string", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Exported file"}
                }
            }
        }
    },
    "definitions": {
        "RecomputeRequest": {
            "type": "object",
            "required": ["exam_id"],
            "properties": {
                "exam_id": {"type": "string"},
                "grade_level": {"type": "string"}
            }
        },
        "RecomputeResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "updated_count": {"type": "integer"},
                "grade_levels": {"type": "array", "items": {"type": "string"}},
                "execution_time": {"type": "number"}
            }
        },
        "ImportResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "imported_count": {"type": "integer"},
                "failed_count": {"type": "integer"},
                "error_details": {"type": "array", "items": {"$ref": "#/definitions/RowError"}},
                "ranking_update_status": {"type": "string", "enum": ["async_submitted", "redis_unavailable", "queue_not_installed", "skipped", "error_skipped"]},
                "execution_time": {"type": "number"}
            }
        },
        "RowError": {
            "type": "object",
            "properties": {
                "row": {"type": "integer"},
                "student_id": {"type": "string"},
                "student_name": {"type": "string"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
